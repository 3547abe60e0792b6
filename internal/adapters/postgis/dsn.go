// Package postgis reads the schema of PostgreSQL/PostGIS databases given as
// OGR "PG:" connection strings.
package postgis

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/sourcepole/qgis-interlis-plugin/internal/domain"
)

// DefaultSchema is used when the connection string names no schema.
const DefaultSchema = "public"

// OGR specific keywords that libpq does not understand.
var ogrKeywords = map[string]bool{
	"schemas":         true,
	"active_schema":   true,
	"tables":          true,
	"list_all_tables": true,
}

// DSN is a parsed OGR PostgreSQL connection string.
type DSN struct {
	Conn    *pgx.ConnConfig
	Schemas []string // From "schemas=a,b", or active_schema
	Tables  []string // From "tables=a,b"

	explicit map[string]bool
}

// ParseDSN parses "PG:dbname=x host=y ..." into a pgx configuration.
func ParseDSN(ds string) (*DSN, error) {
	s := strings.TrimSpace(ds)
	if !strings.HasPrefix(s, domain.PGPrefix) {
		return nil, fmt.Errorf("%w: not a PG: connection string", domain.ErrInvalidInput)
	}
	s = strings.TrimPrefix(s, domain.PGPrefix)

	pairs, err := splitKeywords(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	dsn := &DSN{explicit: make(map[string]bool)}
	var libpq []string
	for _, kv := range pairs {
		switch kv.key {
		case "schemas":
			dsn.Schemas = splitList(kv.value)
		case "active_schema":
			if len(dsn.Schemas) == 0 {
				dsn.Schemas = []string{kv.value}
			}
		case "tables":
			dsn.Tables = splitList(kv.value)
		}
		if ogrKeywords[kv.key] {
			continue
		}
		if kv.value != "" {
			dsn.explicit[kv.key] = true
		}
		libpq = append(libpq, kv.key+"="+quote(kv.value))
	}
	if len(dsn.Schemas) == 0 {
		dsn.Schemas = []string{DefaultSchema}
	}

	dsn.Conn, err = pgx.ParseConfig(strings.Join(libpq, " "))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return dsn, nil
}

// ConnectionArgs returns the ili2pg connection options for the values that
// are set in the connection string.
func (d *DSN) ConnectionArgs() []string {
	var args []string
	add := func(key, flag, value string) {
		if d.explicit[key] && value != "" {
			args = append(args, flag, value)
		}
	}
	add("host", "--dbhost", d.Conn.Host)
	if d.explicit["port"] && d.Conn.Port != 0 {
		args = append(args, "--dbport", strconv.Itoa(int(d.Conn.Port)))
	}
	add("dbname", "--dbdatabase", d.Conn.Database)
	add("user", "--dbusr", d.Conn.User)
	add("password", "--dbpwd", d.Conn.Password)
	return args
}

type keyword struct {
	key, value string
}

// splitKeywords splits a libpq keyword/value string. Values may be single
// quoted with backslash escapes.
func splitKeywords(s string) ([]keyword, error) {
	var pairs []keyword
	s = strings.TrimSpace(s)
	for s != "" {
		eq := strings.IndexByte(s, '=')
		if eq < 0 {
			return nil, errors.New("invalid keyword/value")
		}
		key := strings.TrimSpace(s[:eq])
		s = strings.TrimLeft(s[eq+1:], " \t")

		var val strings.Builder
		quoted := strings.HasPrefix(s, "'")
		if quoted {
			s = s[1:]
		}
		end := 0
		for ; end < len(s); end++ {
			c := s[end]
			if quoted && c == '\'' {
				break
			}
			if !quoted && (c == ' ' || c == '\t') {
				break
			}
			if c == '\\' && end+1 < len(s) {
				end++
				c = s[end]
			}
			val.WriteByte(c)
		}
		if quoted && end == len(s) {
			return nil, errors.New("unterminated quoted string")
		}
		pairs = append(pairs, keyword{key: key, value: val.String()})
		if end < len(s) {
			end++
		}
		s = strings.TrimSpace(s[end:])
	}
	return pairs, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// Hosts returns the primary host followed by any fallback hosts.
func (d *DSN) Hosts() []string {
	hosts := []string{d.Conn.Host}
	for _, fb := range d.Conn.Fallbacks {
		if !slices.Contains(hosts, fb.Host) {
			hosts = append(hosts, fb.Host)
		}
	}
	return hosts
}
