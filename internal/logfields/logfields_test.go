package logfields

import (
	"errors"
	"testing"
)

func TestErrorAttr(t *testing.T) {
	a := Error(errors.New("boom"))
	if a.Key != KeyError {
		t.Errorf("expected key %q, got %q", KeyError, a.Key)
	}
	if a.Value.String() != "boom" {
		t.Errorf("expected value boom, got %s", a.Value.String())
	}
}

func TestErrorAttrNil(t *testing.T) {
	a := Error(nil)
	if a.Value.String() != "" {
		t.Errorf("nil error should produce empty value, got %q", a.Value.String())
	}
}

func TestFieldKeys(t *testing.T) {
	cases := []struct {
		attrKey string
		want    string
	}{
		{Path("x").Key, KeyPath},
		{Section("x").Key, KeySection},
		{Page("x").Key, KeyPage},
		{Template("x").Key, KeyTemplate},
		{Output("x").Key, KeyOutput},
		{BuildID("x").Key, KeyBuildID},
		{Reason("x").Key, KeyReason},
		{CacheName("x").Key, KeyCacheName},
		{Count(1).Key, KeyCount},
		{DurationMS(1).Key, KeyDurationMS},
	}
	for _, c := range cases {
		if c.attrKey != c.want {
			t.Errorf("expected key %q, got %q", c.want, c.attrKey)
		}
	}
}
