package main

import (
	"reflect"
	"testing"
)

func TestQueryArgsReorder(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"no flags", []string{"wind", "turbines"}, []string{"wind", "turbines"}},
		{"flags first", []string{"-top-k", "3", "wind"}, []string{"-top-k", "3", "wind"}},
		{"flags after query", []string{"wind", "turbines", "-top-k", "3"}, []string{"-top-k", "3", "wind", "turbines"}},
		{"empty", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := queryArgsReorder(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
