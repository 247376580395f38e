// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import "testing"

func TestJumppadDecodesVariableArity(t *testing.T) {
	var gotDst string
	var gotFiles []string

	fn := func(dst string, files []string) error {
		gotDst = dst
		gotFiles = files
		return nil
	}

	bf := Jumppad(fn)
	if err := bf([]string{"out.dir", "3", "a.txt", "b.txt", "c.txt"}); err != nil {
		t.Fatalf("builtin: %v", err)
	}
	if gotDst != "out.dir" {
		t.Fatalf("dst = %q", gotDst)
	}
	want := []string{"a.txt", "b.txt", "c.txt"}
	if len(gotFiles) != len(want) {
		t.Fatalf("files = %v", gotFiles)
	}
	for i := range want {
		if gotFiles[i] != want[i] {
			t.Fatalf("files[%d] = %q, want %q", i, gotFiles[i], want[i])
		}
	}
}

func TestJumppadPropagatesError(t *testing.T) {
	fn := func(name string) error { return errTest }
	bf := Jumppad(fn)
	if err := bf([]string{"x"}); err != errTest {
		t.Fatalf("err = %v, want errTest", err)
	}
}

func TestRunBuiltinUnknownName(t *testing.T) {
	if err := RunBuiltin("does-not-exist", nil); err == nil {
		t.Fatal("want error for unknown builtin")
	}
}

func TestRegisterAndRunBuiltin(t *testing.T) {
	called := false
	RegisterBuiltin("test-echo", Jumppad(func(s string) error {
		called = true
		if s != "hi" {
			t.Fatalf("s = %q", s)
		}
		return nil
	}))
	if err := RunBuiltin("test-echo", []string{"hi"}); err != nil {
		t.Fatalf("RunBuiltin: %v", err)
	}
	if !called {
		t.Fatal("builtin was not invoked")
	}
}

var errTest = testErr("boom")

type testErr string

func (e testErr) Error() string { return string(e) }
