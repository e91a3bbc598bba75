package common

import (
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	snowNode     *snowflake.Node
	snowNodeOnce sync.Once
)

// UUIDint64 returns a time ordered unique int64 id.
func UUIDint64() int64 {
	snowNodeOnce.Do(func() {
		node, err := snowflake.NewNode(1)
		if err != nil {
			panic(err)
		}
		snowNode = node
	})
	return snowNode.Generate().Int64()
}

// IsEmptyOrNA reports values the admin UI uses to mean "not set".
func IsEmptyOrNA(val string) bool {
	v := strings.TrimSpace(val)
	return v == "" || strings.EqualFold(v, "N/A")
}

var titleCaser = cases.Title(language.English)

// TitleCase normalises free-form labels such as categories: "solid  BLOCKS" -> "Solid Blocks".
func TitleCase(s string) string {
	return titleCaser.String(strings.Join(strings.Fields(s), " "))
}
