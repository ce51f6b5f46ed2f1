package patient

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// UploadPolicy bounds what a batch upload will accept. Deployments override
// the defaults with a YAML file so the closed gender set and accepted date
// layouts can track local intake forms without a rebuild.
type UploadPolicy struct {
	MaxRows     int      `yaml:"max_rows" json:"max_rows"`
	Genders     []string `yaml:"genders" json:"genders"`
	DateLayouts []string `yaml:"date_layouts" json:"date_layouts"`
}

func LoadPolicy(path string) (UploadPolicy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultPolicy(), err
	}

	var policy UploadPolicy
	if err := yaml.Unmarshal(content, &policy); err != nil {
		return UploadPolicy{}, err
	}

	if policy.MaxRows <= 0 {
		policy.MaxRows = DefaultPolicy().MaxRows
	}
	if len(policy.Genders) == 0 {
		return UploadPolicy{}, errors.New("upload policy has no genders configured")
	}
	if len(policy.DateLayouts) == 0 {
		policy.DateLayouts = DefaultPolicy().DateLayouts
	}

	return policy, nil
}

func DefaultPolicy() UploadPolicy {
	return UploadPolicy{
		MaxRows: 10000,
		Genders: []string{"male", "female", "other", "unknown"},
		DateLayouts: []string{
			"2006-01-02",
			"2006-01-02 15:04:05",
			"01/02/2006",
			"02-Jan-2006",
		},
	}
}
