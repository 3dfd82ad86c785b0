package provisioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseUsername(t *testing.T) {
	cases := map[string]string{
		"Jane Doe":             "jane.doe",
		"  José  Pérez-Núñez ": "jose.perez.nunez",
		"ANA":                  "ana",
		"O'Brien 3rd":          "o.brien.3rd",
		"***":                  "user",
		"":                     "user",
	}
	for in, want := range cases {
		assert.Equal(t, want, BaseUsername(in), "name %q", in)
	}
}
