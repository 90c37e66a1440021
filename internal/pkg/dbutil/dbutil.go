package dbutil

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = pq.ErrorCode("23505")

var offsetCountLimit = regexp.MustCompile(`(?i)LIMIT\s+\?\s*,\s*\?`)

// Finalize turns a gendry query into postgres form. gendry writes
// "LIMIT offset, count"; postgres wants "LIMIT count OFFSET offset" and $n
// placeholders.
func Finalize(query string, args []interface{}) (string, []interface{}) {
	if loc := offsetCountLimit.FindStringIndex(query); loc != nil {
		i := strings.Count(query[:loc[0]], "?")
		if i+1 < len(args) {
			args[i], args[i+1] = args[i+1], args[i]
			query = query[:loc[0]] + "LIMIT ? OFFSET ?" + query[loc[1]:]
		}
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}

// IsConflict reports a unique constraint violation anywhere in err's chain.
func IsConflict(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
