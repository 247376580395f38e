// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package command

import (
	"reflect"
	"strconv"

	"github.com/pkg/errors"
)

// BuiltinFunc is a built-in command's entry point, called with the raw
// decoded string argument vector.
type BuiltinFunc func(args []string) error

var builtins = map[string]BuiltinFunc{}

// RegisterBuiltin binds name to fn in the process-wide jumppad table.
// cmd/sw-internal dispatches `internal-call-builtin-function <module>
// <name> <version> <args...>` through this table by calling RunBuiltin.
func RegisterBuiltin(name string, fn BuiltinFunc) {
	builtins[name] = fn
}

// RunBuiltin looks up name and invokes it with args.
func RunBuiltin(name string, args []string) error {
	fn, ok := builtins[name]
	if !ok {
		return errors.Errorf("command: no builtin function %q registered", name)
	}
	return fn(args)
}

// Jumppad wraps fn (any function whose parameters are string, bool, int,
// or []string) into a BuiltinFunc that decodes a flat string argument
// vector into fn's typed parameters via reflection: a typed
// jump-table that converts a string argument vector to typed arguments
// via a small reflection helper." A []string parameter is variable-arity:
// it consumes a leading decimal count followed by that many further
// arguments (a file set is N path_1 ... path_N).
func Jumppad(fn interface{}) BuiltinFunc {
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func {
		panic("command: Jumppad requires a function")
	}

	return func(args []string) error {
		in := make([]reflect.Value, 0, t.NumIn())
		idx := 0
		for i := 0; i < t.NumIn(); i++ {
			pt := t.In(i)
			val, consumed, err := decodeArg(pt, args, idx)
			if err != nil {
				return errors.Wrapf(err, "jumppad: parameter %d", i)
			}
			idx += consumed
			in = append(in, val)
		}

		out := v.Call(in)
		if len(out) > 0 {
			last := out[len(out)-1]
			if errVal, ok := last.Interface().(error); ok && errVal != nil {
				return errVal
			}
		}
		return nil
	}
}

func decodeArg(pt reflect.Type, args []string, idx int) (reflect.Value, int, error) {
	if pt.Kind() == reflect.Slice && pt.Elem().Kind() == reflect.String {
		if idx >= len(args) {
			return reflect.Value{}, 0, errors.New("missing variable-arity count")
		}
		n, err := strconv.Atoi(args[idx])
		if err != nil {
			return reflect.Value{}, 0, errors.Wrapf(err, "parsing variable-arity count %q", args[idx])
		}
		if idx+1+n > len(args) {
			return reflect.Value{}, 0, errors.Errorf("declared %d elements but only %d args remain", n, len(args)-idx-1)
		}
		vals := append([]string(nil), args[idx+1:idx+1+n]...)
		return reflect.ValueOf(vals), 1 + n, nil
	}

	if idx >= len(args) {
		return reflect.Value{}, 0, errors.New("missing argument")
	}
	raw := args[idx]
	switch pt.Kind() {
	case reflect.String:
		return reflect.ValueOf(raw), 1, nil
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return reflect.Value{}, 0, errors.Wrapf(err, "parsing bool %q", raw)
		}
		return reflect.ValueOf(b), 1, nil
	case reflect.Int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return reflect.Value{}, 0, errors.Wrapf(err, "parsing int %q", raw)
		}
		return reflect.ValueOf(n), 1, nil
	default:
		return reflect.Value{}, 0, errors.Errorf("unsupported parameter kind %s", pt.Kind())
	}
}
