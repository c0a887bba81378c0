// Package clix holds flag parsing helpers shared by the commands.
package clix

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"cinematch/internal/models"
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// AddPaginationFlags registers --limit/-l and --offset/-o.
func AddPaginationFlags(flags *pflag.FlagSet, defaultLimit int) {
	flags.IntP("limit", "l", defaultLimit, "Number of items to display")
	flags.IntP("offset", "o", 0, "Number of items to skip")
}

func ParsePagination(flags *pflag.FlagSet) (PaginationParams, error) {
	limit, _ := flags.GetInt("limit")
	offset, _ := flags.GetInt("offset")
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		return PaginationParams{}, fmt.Errorf("%w: --offset cannot be negative", models.ErrValidation)
	}
	return PaginationParams{Limit: limit, Offset: offset}, nil
}

// ParseList reads a comma separated flag, dropping blanks.
func ParseList(flags *pflag.FlagSet, name string) []string {
	raw, _ := flags.GetString(name)
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// IntOverride returns the flag's value when it was set on the command line
// and def otherwise.
func IntOverride(flags *pflag.FlagSet, name string, def int) int {
	if !flags.Changed(name) {
		return def
	}
	v, _ := flags.GetInt(name)
	return v
}

func StringOverride(flags *pflag.FlagSet, name string, def string) string {
	if !flags.Changed(name) {
		return def
	}
	v, _ := flags.GetString(name)
	return v
}
