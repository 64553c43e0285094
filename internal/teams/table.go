// Package teams maps the short club names printed by source sites to the
// canonical full names stored in the database, and back.
package teams

import (
	"fmt"
	"strings"
)

// Unknown is returned for any name the table does not know.
const Unknown = "Unknown"

// UnknownCode is the team code for unmapped short names.
const UnknownCode = "XX"

// Entry describes one club.
type Entry struct {
	Short   string   `mapstructure:"short" yaml:"short"`
	Full    string   `mapstructure:"full" yaml:"full"`
	Code    string   `mapstructure:"code" yaml:"code"`
	Aliases []string `mapstructure:"aliases" yaml:"aliases"`
}

// Table is an immutable bidirectional name table. It is safe for concurrent use.
type Table struct {
	shortToFull map[string]string
	fullToShort map[string]string
	codes       map[string]string
}

// KBOEntries returns the ten current KBO League clubs.
func KBOEntries() []Entry {
	return []Entry{
		{Short: "한화", Full: "한화 이글스", Code: "HH"},
		{Short: "LG", Full: "LG 트윈스", Code: "LG"},
		{Short: "롯데", Full: "롯데 자이언츠", Code: "LT"},
		{Short: "KIA", Full: "KIA 타이거즈", Code: "HT"},
		{Short: "SSG", Full: "SSG 랜더스", Code: "SK", Aliases: []string{"SK"}},
		{Short: "KT", Full: "KT 위즈", Code: "KT"},
		{Short: "삼성", Full: "삼성 라이온즈", Code: "SS"},
		{Short: "NC", Full: "NC 다이노스", Code: "NC"},
		{Short: "두산", Full: "두산 베어스", Code: "OB"},
		{Short: "키움", Full: "키움 히어로즈", Code: "WO"},
	}
}

// KBO returns the default league table.
func KBO() *Table {
	t, err := New(KBOEntries())
	if err != nil {
		panic(err)
	}
	return t
}

// New builds a table. Short names, aliases and full names must be unique.
func New(entries []Entry) (*Table, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("team table needs at least one entry")
	}
	t := &Table{
		shortToFull: make(map[string]string, len(entries)),
		fullToShort: make(map[string]string, len(entries)),
		codes:       make(map[string]string, len(entries)),
	}
	for i, e := range entries {
		short := strings.TrimSpace(e.Short)
		full := strings.TrimSpace(e.Full)
		if short == "" || full == "" {
			return nil, fmt.Errorf("teams[%d]: short and full names are required", i)
		}
		if _, dup := t.fullToShort[full]; dup {
			return nil, fmt.Errorf("teams[%d]: duplicate full name %q", i, full)
		}
		t.fullToShort[full] = short
		code := strings.TrimSpace(e.Code)
		if code == "" {
			code = UnknownCode
		}
		for _, name := range append([]string{short}, e.Aliases...) {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, dup := t.shortToFull[name]; dup {
				return nil, fmt.Errorf("teams[%d]: duplicate short name %q", i, name)
			}
			t.shortToFull[name] = full
			t.codes[name] = code
		}
	}
	return t, nil
}

// FullName returns the canonical name for a short display name, or Unknown.
func (t *Table) FullName(short string) string {
	if full, ok := t.shortToFull[strings.TrimSpace(short)]; ok {
		return full
	}
	return Unknown
}

// ShortName returns the primary short name for a canonical name, or Unknown.
// Aliases are never returned.
func (t *Table) ShortName(full string) string {
	if short, ok := t.fullToShort[strings.TrimSpace(full)]; ok {
		return short
	}
	return Unknown
}

// Code returns the league team code for a short name, or UnknownCode.
func (t *Table) Code(short string) string {
	if code, ok := t.codes[strings.TrimSpace(short)]; ok {
		return code
	}
	return UnknownCode
}

// IsUnknown reports whether name is the Unknown sentinel.
func (t *Table) IsUnknown(name string) bool {
	return name == Unknown
}

// FullNames lists every canonical name in the table.
func (t *Table) FullNames() []string {
	out := make([]string, 0, len(t.fullToShort))
	for full := range t.fullToShort {
		out = append(out, full)
	}
	return out
}
