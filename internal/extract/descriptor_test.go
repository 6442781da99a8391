package extract

import "testing"

func TestDescriptor(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			"year model vin",
			"2018TESLA MODEL S 5YJSA1E22JF272459",
			"2018TESLA MODEL S 5YJSA1E22JF272459",
		},
		{
			"bare vin",
			"оплата за 5YJSA1E22JF272459 дякую",
			"5YJSA1E22JF272459",
		},
		{
			"fallback first five tokens",
			"hello world foo bar baz qux",
			"hello world foo bar baz",
		},
		{
			"fallback short text",
			"hello world",
			"hello world",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Descriptor(tc.in); got != tc.want {
				t.Fatalf("Descriptor(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestDescriptorNeverEmpty(t *testing.T) {
	if got := Descriptor("x"); got == "" {
		t.Fatal("descriptor empty for non-empty input")
	}
}

func TestDescriptorCollapsesWhitespace(t *testing.T) {
	got := Descriptor("2018TESLA   MODEL S\t5YJSA1E22JF272459")
	want := "2018TESLA MODEL S 5YJSA1E22JF272459"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
