package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMoney(t *testing.T) {
	cases := map[int64]string{
		0:         "",
		999:       "$999",
		1000:      "$1,000",
		63000000:  "$63,000,000",
		463517383: "$463,517,383",
	}
	for in, want := range cases {
		assert.Equal(t, want, money(in), in)
	}
}
