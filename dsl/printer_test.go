package dsl

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

// shape renders a tree without source positions or analyzer annotations.
func shape(v reflect.Value, b *strings.Builder) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			b.WriteString("nil")
			return
		}
		shape(v.Elem(), b)
	case reflect.Struct:
		if tok, ok := v.Interface().(Token); ok {
			b.WriteString(tok.Type.String())
			return
		}
		b.WriteString(v.Type().Name() + "{")
		for i := 0; i < v.NumField(); i++ {
			f := v.Type().Field(i)
			if f.Name == "Symbol" || f.Name == "LockKeys" {
				continue
			}
			b.WriteString(f.Name + ":")
			shape(v.Field(i), b)
			b.WriteString(" ")
		}
		b.WriteString("}")
	case reflect.Slice:
		b.WriteString("[")
		for i := 0; i < v.Len(); i++ {
			shape(v.Index(i), b)
			b.WriteString(",")
		}
		b.WriteString("]")
	default:
		fmt.Fprintf(b, "%#v", v.Interface())
	}
}

func treeShape(prog *Program) string {
	var b strings.Builder
	shape(reflect.ValueOf(prog), &b)
	return b.String()
}

func TestFormatRoundTrip(t *testing.T) {
	sources := map[string]string{
		"survey": surveyProgram,
		"operators": `
Action calc(a, b) {
	x = -a + b * (a - b) / 2 % 3;
	y = not (a < b) or a >= b and b != 0;
	z = "quote \" tab \t" + 'single';
	w = 1.5 * 2.0;
	return x;
}
Agent d { calc; }
Task t({d[s~e]}) {
	init {}
	goal {}
	routine {
		order d[s~e] { calc(1, 2); }
	} || {
		return;
	}
}
Main { Agent d 2; t({d[0~1 + 1]}); }
`,
		"queues": `
Import sys
Action push(v) { put v to ##q##; }
Agent d { push; }
Behavior drain() {
	init { ; }
	goal { get item from ##q##; $ item == 0 }
	routine { sys.sleep(1); }
}
Task t({a[s~e], b[x~y]}, n) {
	init { put n to #seed#; }
	goal { $ 1 }
	routine {
		each a[s~e] { push(0); }
		order b[x~y] { drain(); }
		sub({a[s~e]});
	}
}
Task sub({a[s~e]}) { init {} goal { $ 1 } routine {} }
Main {
	Agent d 2;
	t({d[0~1], d[1~2]}, 7);
}
`,
	}

	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			first, err := Parse(src)
			if err != nil {
				t.Fatalf("Parse(src) error = %v", err)
			}
			printed := Format(first)
			second, err := Parse(printed)
			if err != nil {
				t.Fatalf("Parse(Format()) error = %v\n%s", err, printed)
			}
			if a, b := treeShape(first), treeShape(second); a != b {
				t.Errorf("round trip changed the tree\nprinted:\n%s\nbefore: %s\nafter:  %s", printed, a, b)
			}
			if again := Format(second); again != printed {
				t.Errorf("Format() is not stable:\n%s\nvs\n%s", printed, again)
			}
		})
	}
}

func TestFormatCanonical(t *testing.T) {
	src := `Action   a(x){record(x);}
Agent d{a;}
Task t({d[s~e]}){init{}goal{$ 1}routine{order d[s~e]{a(1);}}}
Main{Agent d 1;t({d[0~1]});}`

	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := `Action a(x) {
	record(x);
}

Agent d { a; }

Task t({d[s~e]}) {
	init {}
	goal {
		$ 1
	}
	routine {
		order d[s~e] {
			a(1);
		}
	}
}

Main {
	Agent d 1;
	t({d[0~1]});
}
`
	if got := Format(prog); got != want {
		t.Errorf("Format() =\n%s\nwant\n%s", got, want)
	}
}

func TestFormatNumbers(t *testing.T) {
	tests := []struct {
		v    any
		want string
	}{
		{int64(7), "7"},
		{2.0, "2.0"},
		{0.125, "0.125"},
	}
	for _, tt := range tests {
		if got := formatNumber(tt.v); got != tt.want {
			t.Errorf("formatNumber(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
