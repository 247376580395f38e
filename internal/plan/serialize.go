// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package plan

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/nativepkg/nativepkg/internal/command"
	"github.com/pkg/errors"
)

// The format: the magic string, a deduplicated string table (a uvarint
// count, then each string), then a uvarint command count and
// per-command records that refer to the table by index. The
// format is private - no cross-version compatibility is promised, and a
// parse failure (including a magic mismatch) should be treated by callers
// as "no cache, recompute," never surfaced as a fatal plan error.
const magic = "SWPLAN01"

type stringTable struct {
	strs []string
	idx  map[string]int
}

func newStringTable() *stringTable {
	return &stringTable{idx: map[string]int{}}
}

func (t *stringTable) intern(s string) int {
	if i, ok := t.idx[s]; ok {
		return i
	}
	i := len(t.strs)
	t.strs = append(t.strs, s)
	t.idx[s] = i
	return i
}

// Encode writes p in the binary plan format to w.
func Encode(w io.Writer, p *Plan) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(magic); err != nil {
		return err
	}

	tbl := newStringTable()
	nameIdx := make([]int, len(p.Commands))
	programIdx := make([]int, len(p.Commands))
	dirIdx := make([]int, len(p.Commands))
	stdinIdx := make([]int, len(p.Commands))
	stdoutIdx := make([]int, len(p.Commands))
	stderrIdx := make([]int, len(p.Commands))
	argIdx := make([][]int, len(p.Commands))
	envIdx := make([][]int, len(p.Commands))
	depIdx := make([][]int, len(p.Commands))
	inputIdx := make([][]int, len(p.Commands))
	interIdx := make([][]int, len(p.Commands))
	outputIdx := make([][]int, len(p.Commands))

	for i, c := range p.Commands {
		nameIdx[i] = tbl.intern(c.Name)
		programIdx[i] = tbl.intern(c.Program)
		dirIdx[i] = tbl.intern(c.Dir)
		stdinIdx[i] = tbl.intern(c.Stdin)
		stdoutIdx[i] = tbl.intern(c.Stdout)
		stderrIdx[i] = tbl.intern(c.Stderr)
		for _, a := range c.Args {
			argIdx[i] = append(argIdx[i], tbl.intern(argToken(a)))
		}
		for _, e := range c.Env {
			envIdx[i] = append(envIdx[i], tbl.intern(e))
		}
		for _, d := range c.Dependencies {
			depIdx[i] = append(depIdx[i], tbl.intern(d))
		}
		for _, in := range c.Inputs {
			inputIdx[i] = append(inputIdx[i], tbl.intern(in))
		}
		for _, im := range c.Intermediates {
			interIdx[i] = append(interIdx[i], tbl.intern(im))
		}
		for _, out := range c.Outputs {
			outputIdx[i] = append(outputIdx[i], tbl.intern(out))
		}
	}

	if err := writeUvarint(bw, uint64(len(tbl.strs))); err != nil {
		return err
	}
	for _, s := range tbl.strs {
		if err := writeString(bw, s); err != nil {
			return err
		}
	}

	if err := writeUvarint(bw, uint64(len(p.Commands))); err != nil {
		return err
	}
	for i, c := range p.Commands {
		if err := writeUvarint(bw, uint64(c.Kind)); err != nil {
			return err
		}
		if err := writeUvarint(bw, uint64(nameIdx[i])); err != nil {
			return err
		}
		if err := writeUvarint(bw, uint64(programIdx[i])); err != nil {
			return err
		}
		if err := writeUvarint(bw, uint64(dirIdx[i])); err != nil {
			return err
		}
		if err := writeUvarint(bw, uint64(stdinIdx[i])); err != nil {
			return err
		}
		if err := writeUvarint(bw, uint64(stdoutIdx[i])); err != nil {
			return err
		}
		if err := writeUvarint(bw, uint64(stderrIdx[i])); err != nil {
			return err
		}
		if err := writeIndexList(bw, argIdx[i]); err != nil {
			return err
		}
		if err := writeIndexList(bw, envIdx[i]); err != nil {
			return err
		}
		if err := writeIndexList(bw, depIdx[i]); err != nil {
			return err
		}
		if err := writeIndexList(bw, inputIdx[i]); err != nil {
			return err
		}
		if err := writeIndexList(bw, interIdx[i]); err != nil {
			return err
		}
		if err := writeIndexList(bw, outputIdx[i]); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// argToken stringifies an Arg into the string table: built-in commands'
// own deferred/jumppad args are never resolved at this layer, so a
// serialized plan always round-trips the *unresolved* Arg shape, not a
// once-resolved string.
func argToken(a command.Arg) string {
	switch a.Kind {
	case command.ArgOutputFile:
		return "\x01" + a.Value
	case command.ArgInputFile:
		return "\x02" + a.Value
	case command.ArgDeferred:
		return "\x03" + a.Key
	default:
		return "\x00" + a.Value
	}
}

func argFromToken(s string) command.Arg {
	if s == "" {
		return command.Str("")
	}
	rest := s[1:]
	switch s[0] {
	case 1:
		return command.OutputFile(rest)
	case 2:
		return command.InputFile(rest)
	case 3:
		return command.Deferred(rest)
	default:
		return command.Str(rest)
	}
}

// Decode reads a plan previously written by Encode. Any error - including
// a bad magic or truncated stream - should be treated by the caller as
// "no cache, recompute".
func Decode(r io.Reader) (*Plan, error) {
	br := bufio.NewReader(r)
	got := make([]byte, len(magic))
	if _, err := io.ReadFull(br, got); err != nil {
		return nil, errors.Wrap(err, "plan: reading magic")
	}
	if string(got) != magic {
		return nil, errors.New("plan: bad magic")
	}

	nstr, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, err
	}
	strs := make([]string, nstr)
	for i := range strs {
		s, err := readString(br)
		if err != nil {
			return nil, err
		}
		strs[i] = s
	}

	ncmd, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, err
	}

	p := New()
	p.Commands = make([]*command.Command, ncmd)
	for i := range p.Commands {
		kind, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, err
		}
		name, err := readIndexedString(br, strs)
		if err != nil {
			return nil, err
		}
		program, err := readIndexedString(br, strs)
		if err != nil {
			return nil, err
		}
		dir, err := readIndexedString(br, strs)
		if err != nil {
			return nil, err
		}
		stdin, err := readIndexedString(br, strs)
		if err != nil {
			return nil, err
		}
		stdout, err := readIndexedString(br, strs)
		if err != nil {
			return nil, err
		}
		stderr, err := readIndexedString(br, strs)
		if err != nil {
			return nil, err
		}
		argToks, err := readIndexList(br, strs)
		if err != nil {
			return nil, err
		}
		env, err := readIndexList(br, strs)
		if err != nil {
			return nil, err
		}
		deps, err := readIndexList(br, strs)
		if err != nil {
			return nil, err
		}
		inputs, err := readIndexList(br, strs)
		if err != nil {
			return nil, err
		}
		inter, err := readIndexList(br, strs)
		if err != nil {
			return nil, err
		}
		outputs, err := readIndexList(br, strs)
		if err != nil {
			return nil, err
		}

		args := make([]command.Arg, len(argToks))
		for j, tok := range argToks {
			args[j] = argFromToken(tok)
		}

		p.Commands[i] = &command.Command{
			Kind:          command.Kind(kind),
			Name:          name,
			Program:       program,
			Dir:           dir,
			Stdin:         stdin,
			Stdout:        stdout,
			Stderr:        stderr,
			Args:          args,
			Env:           env,
			Dependencies:  deps,
			Inputs:        inputs,
			Intermediates: inter,
			Outputs:       outputs,
		}
	}

	return p, nil
}

func writeUvarint(w io.Writer, v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

func writeString(w io.Writer, s string) error {
	if err := writeUvarint(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.ByteReader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	br, ok := r.(io.Reader)
	if !ok {
		return "", errors.New("plan: reader does not support bulk reads")
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeIndexList(w io.Writer, idxs []int) error {
	if err := writeUvarint(w, uint64(len(idxs))); err != nil {
		return err
	}
	for _, i := range idxs {
		if err := writeUvarint(w, uint64(i)); err != nil {
			return err
		}
	}
	return nil
}

type byteAndBulkReader interface {
	io.ByteReader
	io.Reader
}

func readIndexList(r byteAndBulkReader, strs []string) ([]string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]string, n)
	for i := range out {
		s, err := readIndexedString(r, strs)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func readIndexedString(r io.ByteReader, strs []string) (string, error) {
	i, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	if int(i) >= len(strs) {
		return "", errors.Errorf("plan: string index %d out of range", i)
	}
	return strs[int(i)], nil
}
