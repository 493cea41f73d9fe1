package types

import (
	"testing"

	"github.com/m-mizutani/gt"
)

func TestCSUrl_Parse(t *testing.T) {
	tests := []struct {
		name     string
		url      CSUrl
		expected CSBucket
		object   CSObjectID
		wantErr  bool
	}{
		{
			name:     "Valid URL",
			url:      "gs://my-bucket/my-object",
			expected: "my-bucket",
			object:   "my-object",
			wantErr:  false,
		},
		{
			name:     "Valid URL with sub directory",
			url:      "gs://my-bucket/runs/2024/",
			expected: "my-bucket",
			object:   "runs/2024/",
			wantErr:  false,
		},
		{
			name:    "Invalid prefix",
			url:     "http://my-bucket/my-object",
			wantErr: true,
		},
		{
			name:    "Invalid prefix format",
			url:     "gs:/my-bucket/my-object",
			wantErr: true,
		},
		{
			name:    "Empty bucket",
			url:     "gs:///my-bucket",
			wantErr: true,
		},
		{
			name:    "no object",
			url:     "gs://my-bucket",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := tt.url.Parse()

			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if bucket != tt.expected {
				t.Errorf("Parse() bucket = %v, expected %v", bucket, tt.expected)
			}

			if object != tt.object {
				t.Errorf("Parse() object = %v, expected %v", object, tt.object)
			}
		})
	}
}

func TestPlatformValidate(t *testing.T) {
	testCases := map[string]struct {
		platform Platform
		wantErr  bool
	}{
		"snowflake":      {platform: "snowflake"},
		"with hyphen":    {platform: "my-postgres"},
		"with dot":       {platform: "redshift.v2"},
		"empty":          {platform: "", wantErr: true},
		"upper case":     {platform: "Snowflake", wantErr: true},
		"comma":          {platform: "snow,flake", wantErr: true},
		"parenthesis":    {platform: "snow(flake)", wantErr: true},
		"leading hyphen": {platform: "-snowflake", wantErr: true},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			err := tc.platform.Validate()
			if tc.wantErr {
				gt.Error(t, err)
			} else {
				gt.NoError(t, err)
			}
		})
	}
}

func TestCategoryKinds(t *testing.T) {
	gt.A(t, CategoryStructural.Kinds()).Equal([]EntityKind{KindSchema, KindDataset})
	gt.A(t, CategoryAccessControl.Kinds()).Equal([]EntityKind{KindUser, KindGroup})
	gt.A(t, Category("unknown").Kinds()).Length(0)
}
