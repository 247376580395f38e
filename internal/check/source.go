// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package check

import (
	"fmt"
	"strings"
)

// bigEndianDefinition is the name every set's automatic endianness probe
// resolves.
const bigEndianDefinition = "WORDS_BIGENDIAN"

func bigEndianSource() string {
	return `
int IsBigEndian()
{
    volatile int i=1;
    return ! *((char *)&i);
}
int main() { return IsBigEndian(); }
`
}

// includePreamble renders "#include <x>\n" for every dependency include
// that itself resolved true, in Includes order, for checks whose probe
// source needs them (type/alignment/declaration/struct-member/symbol).
func includePreamble(c *Check, resolvedIncludes map[string]bool) string {
	var b strings.Builder
	for _, inc := range c.Parameters.Includes {
		if resolvedIncludes[inc] {
			fmt.Fprintf(&b, "#include <%s>\n", inc)
		}
	}
	return b.String()
}

// sourceFileContents renders the probe program for c. resolvedIncludes
// holds the outcome of this check's include-exists dependencies so the
// preamble only includes headers known to exist.
func sourceFileContents(c *Check, resolvedIncludes map[string]bool) string {
	switch c.Kind {
	case FunctionExists, LibraryFunctionExists:
		return `
#ifdef __cplusplus
extern "C"
#endif
  char
  CHECK_FUNCTION_EXISTS(void);
int main(int ac, char* av[])
{
  CHECK_FUNCTION_EXISTS();
  if (ac > 1000) {
    return *av[0];
  }
  return 0;
}
`
	case IncludeExists:
		src := "#include <" + c.Data + ">"
		if c.CPPEffective() {
			src += "\nint main()\n{\n  return 0;\n}\n"
		} else {
			src += "\nint main(void)\n{\n  return 0;\n}\n"
		}
		return src

	case TypeSize:
		return includePreamble(c, resolvedIncludes) + "int main() { return sizeof(" + c.Data + "); }"

	case TypeAlignment:
		return includePreamble(c, resolvedIncludes) + `
int main()
{
    char diff;
    struct foo {char a; ` + c.Data + ` b;};
    struct foo *p = (struct foo *) malloc(sizeof(struct foo));
    diff = ((char *)&p->b) - ((char *)&p->a);
    return diff;
}
`
	case SymbolExists:
		return includePreamble(c, resolvedIncludes) + `
int main(int argc, char** argv)
{
  (void)argv;
#ifndef ` + c.Data + `
  return ((int*)(&` + c.Data + `))[argc];
#else
  (void)argc;
  return 0;
#endif
}
`
	case DeclarationExists:
		return includePreamble(c, resolvedIncludes) + "int main() { (void)" + c.Data + "; return 0; }"

	case StructMemberExists:
		parts := strings.SplitN(c.Data, ".", 2)
		structName, member := parts[0], ""
		if len(parts) == 2 {
			member = parts[1]
		}
		return includePreamble(c, resolvedIncludes) +
			"int main() { sizeof(((" + structName + " *)0)->" + member + "); return 0; }"

	case SourceCompiles, SourceLinks, SourceRuns:
		return c.Data

	default:
		return c.Data
	}
}

// CPPEffective reports whether this check's probe should be compiled as
// C++. Exported so a caller wiring up a Toolchain can pick the right
// compiler without reaching into package internals.
func (c *Check) CPPEffective() bool { return c.Parameters.CPP }

func isEndiannessCheck(c *Check) bool {
	return len(c.Definitions) == 1 && c.Definitions[0] == bigEndianDefinition && c.Kind == SourceRuns
}
