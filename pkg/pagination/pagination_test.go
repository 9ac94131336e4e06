package pagination

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   Params
		want Params
	}{
		{"zero takes defaults", Params{}, Params{Limit: DefaultLimit, Offset: 0}},
		{"negative values floored", Params{Limit: -1, Offset: -10}, Params{Limit: DefaultLimit, Offset: 0}},
		{"limit capped", Params{Limit: 5000, Offset: 50}, Params{Limit: MaxLimit, Offset: 50}},
		{"in-range passes through", Params{Limit: 10, Offset: 20}, Params{Limit: 10, Offset: 20}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.in.Normalize(); got != tc.want {
				t.Fatalf("Normalize(%+v) = %+v, want %+v", tc.in, got, tc.want)
			}
		})
	}
}
