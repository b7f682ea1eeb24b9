package textutil

import "testing"

func TestHumanizeSubject(t *testing.T) {
	tests := []struct {
		name     string
		subj     string
		fallback string
		want     string
	}{
		{"plain subject", "Quarterly report", "", "Quarterly report"},
		{"re prefix", "Re: Quarterly report", "", "Quarterly report"},
		{"fwd prefix", "Fwd: Quarterly report", "", "Quarterly report"},
		{"fw prefix", "FW: Quarterly report", "", "Quarterly report"},
		{"counted prefix", "RE[2]: Quarterly report", "", "Quarterly report"},
		{"stacked prefixes", "Re: Fwd: Re: hello", "", "hello"},
		{"german aw prefix", "AW: Termin", "", "Termin"},
		{"whitespace collapsed", "  Re:   hello   world  ", "", "hello world"},
		{"prefix only falls back", "Re:", "(no subject)", "(no subject)"},
		{"empty falls back", "", "(no subject)", "(no subject)"},
		{"re inside subject untouched", "More: details", "", "More: details"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HumanizeSubject(tt.subj, tt.fallback); got != tt.want {
				t.Errorf("HumanizeSubject(%q) = %q, want %q", tt.subj, got, tt.want)
			}
		})
	}
}

func TestSubjectChanged(t *testing.T) {
	tests := []struct {
		name string
		subj string
		base string
		want bool
	}{
		{"identical", "hello", "hello", false},
		{"reply prefix ignored", "Re: hello", "hello", false},
		{"stacked prefixes ignored", "Re: Fwd: hello", "Re: hello", false},
		{"case ignored", "HELLO", "hello", false},
		{"whitespace ignored", "  hello   world ", "hello world", false},
		{"real drift", "changed topic", "hello", true},
		{"empty base never changed", "anything", "", false},
		{"prefix-only base never changed", "anything", "Re:", false},
		{"subject cleared counts", "", "hello", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SubjectChanged(tt.subj, tt.base); got != tt.want {
				t.Errorf("SubjectChanged(%q, %q) = %v, want %v", tt.subj, tt.base, got, tt.want)
			}
		})
	}
}
