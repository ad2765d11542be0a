package main

import (
	"strings"
	"testing"
)

func runScript(t *testing.T, sess *session, script string) string {
	t.Helper()
	var last string
	for i, line := range strings.Split(script, "\n") {
		out, err := sess.exec(line)
		if err != nil {
			t.Fatalf("line %d (%s): %v", i+1, strings.TrimSpace(line), err)
		}
		if out != "" {
			last = out
		}
	}
	return last
}

func TestExecScript(t *testing.T) {
	sess, err := newSession(registry["person"])
	if err != nil {
		t.Fatal(err)
	}
	defer sess.close()

	out := runScript(t, sess, `
		# build a small person
		field Name
		set alice
		end
		field Age
		set 30
		end
		field Home
		field Street
		set 1 main st
		end
		field City
		set springfield
		end
		end
		field Tags
		list
		push a
		push b
		end
		build
	`)
	if !strings.HasPrefix(out, "built:") {
		t.Fatalf("expected build output, got %q", out)
	}
	for _, want := range []string{"alice", "springfield", "[a b]"} {
		if !strings.Contains(out, want) {
			t.Errorf("build output missing %q: %s", want, out)
		}
	}
}

func TestExecMapAndDeferred(t *testing.T) {
	sess, err := newSession(registry["person"])
	if err != nil {
		t.Fatal(err)
	}
	defer sess.close()

	out := runScript(t, sess, `
		defer
		field Home
		field City
		set here
		end
		end
		field Name
		set bob
		end
		field Home
		field Street
		set elm
		end
		end
		field Age
		set 7
		end
		field Scores
		map
		setkey round
		value
		set 12
		end
		end
		finish
		build
	`)
	for _, want := range []string{"bob", "here", "elm", "round:12"} {
		if !strings.Contains(out, want) {
			t.Errorf("build output missing %q: %s", want, out)
		}
	}
}

func TestExecStatusAndComments(t *testing.T) {
	sess, err := newSession(registry["point"])
	if err != nil {
		t.Fatal(err)
	}
	defer sess.close()

	if out, err := sess.exec("   "); err != nil || out != "" {
		t.Errorf("blank line: out=%q err=%v", out, err)
	}
	if out, err := sess.exec("# comment"); err != nil || out != "" {
		t.Errorf("comment line: out=%q err=%v", out, err)
	}

	out, err := sess.exec("field X")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "frames=2") || !strings.Contains(out, "path=X") {
		t.Errorf("status line missing frame or path info: %q", out)
	}
}

func TestExecErrors(t *testing.T) {
	sess, err := newSession(registry["point"])
	if err != nil {
		t.Fatal(err)
	}
	defer sess.close()

	if _, err := sess.exec("frobnicate"); err == nil {
		t.Error("unknown operation should fail")
	}
	if _, err := sess.exec("nth notanumber"); err == nil {
		t.Error("non-numeric index should fail")
	}
	if _, err := sess.exec("field Missing"); err == nil {
		t.Error("unknown field should fail")
	}
}

func TestRegistryNames(t *testing.T) {
	names := registryNames()
	want := []string{"address", "person", "point"}
	if len(names) != len(want) {
		t.Fatalf("got %d names, want %d", len(names), len(want))
	}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("names[%d] = %q, want %q", i, names[i], n)
		}
	}
}
