package cli

import (
	"reflect"
	"testing"
)

func TestRemoveFirstDashDash(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "empty slice",
			in:   []string{},
			want: []string{},
		},
		{
			name: "starts with --",
			in:   []string{"--", "-stdout", "-stderr"},
			want: []string{"-stdout", "-stderr"},
		},
		{
			name: "no --",
			in:   []string{"-stdout", "-stderr"},
			want: []string{"-stdout", "-stderr"},
		},
		{
			name: "only --",
			in:   []string{"--"},
			want: []string{},
		},
		{
			name: "-- in middle",
			in:   []string{"-stderr", "--", "-stdout"},
			want: []string{"-stderr", "--", "-stdout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := removeFirstDashDash(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("removeFirstDashDash() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseViewArgs(t *testing.T) {
	tests := []struct {
		name         string
		in           []string
		wantID       string
		wantSections []string
	}{
		{
			name:         "empty args - default to 0",
			in:           []string{},
			wantID:       "0",
			wantSections: nil,
		},
		{
			name:         "only ID - index 0",
			in:           []string{"0"},
			wantID:       "0",
			wantSections: []string{},
		},
		{
			name:         "only ID - negative index",
			in:           []string{"-1"},
			wantID:       "-1",
			wantSections: []string{},
		},
		{
			name:         "only ID - prefix",
			in:           []string{"0123abcd"},
			wantID:       "0123abcd",
			wantSections: []string{},
		},
		{
			name:         "only sections",
			in:           []string{"-stdout"},
			wantID:       "0",
			wantSections: []string{"-stdout"},
		},
		{
			name:         "ID with sections",
			in:           []string{"0", "-stdout"},
			wantID:       "0",
			wantSections: []string{"-stdout"},
		},
		{
			name:         "ID with -- separator and sections",
			in:           []string{"0", "--", "-stdout", "-stderr"},
			wantID:       "0",
			wantSections: []string{"-stdout", "-stderr"},
		},
		{
			name:         "negative index with -- and sections",
			in:           []string{"-1", "--", "-stderr"},
			wantID:       "-1",
			wantSections: []string{"-stderr"},
		},
		{
			name:         "ID prefix with sections no separator",
			in:           []string{"0123abcd", "-report"},
			wantID:       "0123abcd",
			wantSections: []string{"-report"},
		},
		{
			name:         "only -- uses default 0",
			in:           []string{"--", "-stdout"},
			wantID:       "0",
			wantSections: []string{"-stdout"},
		},
		{
			name:         "negative index with multiple sections",
			in:           []string{"-2", "-stdout", "-summary"},
			wantID:       "-2",
			wantSections: []string{"-stdout", "-summary"},
		},
		{
			name:         "ID 0 with -- and multiple sections",
			in:           []string{"0", "--", "-stdout", "-stderr", "-report"},
			wantID:       "0",
			wantSections: []string{"-stdout", "-stderr", "-report"},
		},
		{
			name:         "section first with more sections",
			in:           []string{"-stderr", "-report"},
			wantID:       "0",
			wantSections: []string{"-stderr", "-report"},
		},
		{
			name:         "dash with digits and letters is a section",
			in:           []string{"-1stdout"},
			wantID:       "0",
			wantSections: []string{"-1stdout"},
		},
		{
			name:         "all digit ID prefix",
			in:           []string{"20260304", "-summary"},
			wantID:       "20260304",
			wantSections: []string{"-summary"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID, gotSections := parseViewArgs(tt.in)
			if gotID != tt.wantID {
				t.Errorf("parseViewArgs() gotID = %v, want %v", gotID, tt.wantID)
			}
			if !reflect.DeepEqual(gotSections, tt.wantSections) {
				t.Errorf("parseViewArgs() gotSections = %v, want %v", gotSections, tt.wantSections)
			}
		})
	}
}
