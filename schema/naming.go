package schema

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jinzhu/inflection"
)

// Namer derives storage identifiers from application-side names. The
// mapping engine uses it when attaching implicit column properties and the
// mapgen tool uses it when emitting table definitions.
type Namer interface {
	TableName(typeName string) string
	ColumnName(table, property string) string
	PropertyName(column string) string
}

// NamingStrategy is the default Namer: snake_case identifiers, pluralized
// table names unless SingularTable is set.
type NamingStrategy struct {
	TablePrefix   string
	SingularTable bool
}

// TableName converts a type name to a table name.
func (ns NamingStrategy) TableName(typeName string) string {
	if ns.SingularTable {
		return ns.TablePrefix + toDBName(typeName)
	}
	return ns.TablePrefix + inflection.Plural(toDBName(typeName))
}

// ColumnName converts a property name to a column name.
func (ns NamingStrategy) ColumnName(table, property string) string {
	return toDBName(property)
}

// PropertyName converts a column name to the implicit property name used
// when a column has no explicitly supplied property.
func (ns NamingStrategy) PropertyName(column string) string {
	parts := strings.Split(column, "_")
	var buf strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if u := strings.ToUpper(p); isCommonInitialism(u) {
			buf.WriteString(u)
		} else {
			buf.WriteString(strings.ToUpper(p[:1]))
			buf.WriteString(p[1:])
		}
	}
	return buf.String()
}

var (
	smap sync.Map
	// https://github.com/golang/lint/blob/master/lint.go#L770
	commonInitialisms         = []string{"API", "ASCII", "CPU", "CSS", "DNS", "EOF", "GUID", "HTML", "HTTP", "HTTPS", "ID", "IP", "JSON", "LHS", "QPS", "RAM", "RHS", "RPC", "SLA", "SMTP", "SSH", "TLS", "TTL", "UID", "UI", "UUID", "URI", "URL", "UTF8", "VM", "XML", "XSRF", "XSS"}
	commonInitialismsReplacer *strings.Replacer
)

func init() {
	var commonInitialismsForReplacer []string
	for _, initialism := range commonInitialisms {
		commonInitialismsForReplacer = append(commonInitialismsForReplacer, initialism, strings.Title(strings.ToLower(initialism)))
	}
	commonInitialismsReplacer = strings.NewReplacer(commonInitialismsForReplacer...)
}

func isCommonInitialism(s string) bool {
	for _, initialism := range commonInitialisms {
		if s == initialism {
			return true
		}
	}
	return false
}

func toDBName(name string) string {
	if name == "" {
		return ""
	} else if v, ok := smap.Load(name); ok {
		return fmt.Sprint(v)
	}

	var (
		value                          = commonInitialismsReplacer.Replace(name)
		buf                            strings.Builder
		lastCase, nextCase, nextNumber bool // upper case == true
		curCase                        = value[0] <= 'Z' && value[0] >= 'A'
	)

	for i, v := range value[:len(value)-1] {
		nextCase = value[i+1] <= 'Z' && value[i+1] >= 'A'
		nextNumber = value[i+1] >= '0' && value[i+1] <= '9'

		if curCase {
			if lastCase && (nextCase || nextNumber) {
				buf.WriteRune(v + 32)
			} else {
				if i > 0 && value[i-1] != '_' && value[i+1] != '_' {
					buf.WriteByte('_')
				}
				buf.WriteRune(v + 32)
			}
		} else {
			buf.WriteRune(v)
		}

		lastCase = curCase
		curCase = nextCase
	}

	if curCase {
		if !lastCase && len(value) > 1 {
			buf.WriteByte('_')
		}
		buf.WriteByte(value[len(value)-1] + 32)
	} else {
		buf.WriteByte(value[len(value)-1])
	}

	dbName := buf.String()
	smap.Store(name, dbName)
	return dbName
}
