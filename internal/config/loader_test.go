package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("NEWSBRIEF_TEST_HOST", "db.internal")

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"set variable", "host: ${NEWSBRIEF_TEST_HOST}", "host: db.internal"},
		{"set variable overrides default", "host: ${NEWSBRIEF_TEST_HOST:fallback}", "host: db.internal"},
		{"unset with default", "host: ${NEWSBRIEF_TEST_MISSING:localhost}", "host: localhost"},
		{"unset with empty default", "password: ${NEWSBRIEF_TEST_MISSING:}", "password: "},
		{"unset without default stays verbatim", "host: ${NEWSBRIEF_TEST_MISSING}", "host: ${NEWSBRIEF_TEST_MISSING}"},
		{"no placeholder", "port: 5432", "port: 5432"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, expandEnv(tc.in))
		})
	}
}
