package password

import "golang.org/x/crypto/bcrypt"

// MaxBytes is the longest input bcrypt reads. Anything after it is ignored.
const MaxBytes = 72

// Cost is a variable so tests can lower it.
var Cost = bcrypt.DefaultCost

func Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), Cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Compare returns nil only when plain matches hash.
func Compare(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
