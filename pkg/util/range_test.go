package util

import (
	"reflect"
	"testing"
)

func TestVLANSpecs(t *testing.T) {
	tests := []struct {
		name    string
		specs   []string
		want    []string
		wantErr bool
	}{
		{"single", []string{"100"}, []string{"100"}, false},
		{"range kept", []string{"200-210"}, []string{"200-210"}, false},
		{"comma list", []string{"100, 200-210"}, []string{"100", "200-210"}, false},
		{"degenerate range", []string{"7-7"}, []string{"7"}, false},
		{"zero allowed", []string{"0"}, []string{"0"}, false},
		{"too large", []string{"4095"}, nil, true},
		{"range end too large", []string{"4000-5000"}, nil, true},
		{"reversed", []string{"20-10"}, nil, true},
		{"junk", []string{"vlan10"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VLANSpecs(tt.specs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("VLANSpecs(%v) error = %v, wantErr %v", tt.specs, err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("VLANSpecs(%v) = %v, want %v", tt.specs, got, tt.want)
			}
		})
	}
}
