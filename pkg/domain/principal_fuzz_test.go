package domain

import "testing"

// FuzzParsePrincipal checks that parsing never panics and that accepted
// input is already canonical after one pass.
func FuzzParsePrincipal(f *testing.F) {
	f.Add("")
	f.Add("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	f.Add("0x0000000000000000000000000000000000000000")
	f.Add("0xZZZZ")
	f.Add("'; DROP TABLE users;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		p, err := ParsePrincipal(input)
		if err != nil {
			if p != "" {
				t.Errorf("error with non-empty principal %q", p)
			}
			return
		}
		again, err := ParsePrincipal(p.String())
		if err != nil {
			t.Fatalf("canonical principal failed to parse: %v", err)
		}
		if again != p {
			t.Errorf("canonical form not stable: %q != %q", again, p)
		}
	})
}
