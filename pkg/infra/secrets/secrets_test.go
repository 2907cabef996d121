package secrets_test

import (
	"slices"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/drover/pkg/infra/secrets"
)

func TestEnvSource(t *testing.T) {
	t.Setenv("DROVER_SECRET_INDEX_API_TOKEN", "tok-123")
	t.Setenv("DROVER_SECRET_SLACK_TOKEN", "xoxb-456")
	t.Setenv("UNRELATED", "visible")

	src := secrets.NewEnv("")

	v, ok := src.Lookup("INDEX_API_TOKEN")
	gt.True(t, ok)
	gt.Equal(t, v, "tok-123")

	_, ok = src.Lookup("MISSING")
	gt.Equal(t, ok, false)

	_, ok = src.Lookup("UNRELATED")
	gt.Equal(t, ok, false)

	values := src.Values()
	gt.True(t, slices.Contains(values, "tok-123"))
	gt.True(t, slices.Contains(values, "xoxb-456"))
	gt.Equal(t, slices.Contains(values, "visible"), false)
}

func TestStatic(t *testing.T) {
	src := secrets.Static{"TOKEN": "abc", "EMPTY": ""}

	v, ok := src.Lookup("TOKEN")
	gt.True(t, ok)
	gt.Equal(t, v, "abc")

	_, ok = src.Lookup("NOPE")
	gt.Equal(t, ok, false)

	gt.Equal(t, src.Values(), []string{"abc"})
}
