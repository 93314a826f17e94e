package accounting

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"pharmapos/internal/domain"

	"gopkg.in/yaml.v3"
)

//go:embed chart.yaml
var defaultChart []byte

// Roles maps posting roles to account codes.
type Roles struct {
	Cash      string `yaml:"cash"`
	Bank      string `yaml:"bank"`
	Inventory string `yaml:"inventory"`
	Payable   string `yaml:"payable"`
	Revenue   string `yaml:"revenue"`
	COGS      string `yaml:"cogs"`
	Shrinkage string `yaml:"shrinkage"`
}

func (r Roles) codes() map[string]string {
	return map[string]string{
		"cash":      r.Cash,
		"bank":      r.Bank,
		"inventory": r.Inventory,
		"payable":   r.Payable,
		"revenue":   r.Revenue,
		"cogs":      r.COGS,
		"shrinkage": r.Shrinkage,
	}
}

type ChartAccount struct {
	Code string             `yaml:"code"`
	Name string             `yaml:"name"`
	Type domain.AccountType `yaml:"type"`
}

type Chart struct {
	Accounts []ChartAccount `yaml:"accounts"`
	Roles    Roles          `yaml:"roles"`
}

// LoadChart reads a chart definition from path, or the embedded default when
// path is empty.
func LoadChart(path string) (Chart, error) {
	data := defaultChart
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Chart{}, fmt.Errorf("read chart %s: %w", path, err)
		}
		data = raw
	}
	return ParseChart(data)
}

func ParseChart(data []byte) (Chart, error) {
	var chart Chart
	if err := yaml.Unmarshal(data, &chart); err != nil {
		return Chart{}, fmt.Errorf("parse chart: %w", err)
	}
	if len(chart.Accounts) == 0 {
		return Chart{}, fmt.Errorf("chart has no accounts")
	}

	known := make(map[string]struct{}, len(chart.Accounts))
	for i, account := range chart.Accounts {
		code := strings.TrimSpace(account.Code)
		if code == "" {
			return Chart{}, fmt.Errorf("chart account %d: code is required", i+1)
		}
		if strings.TrimSpace(account.Name) == "" {
			return Chart{}, fmt.Errorf("chart account %s: name is required", code)
		}
		if !account.Type.Valid() {
			return Chart{}, fmt.Errorf("chart account %s: invalid type %q", code, account.Type)
		}
		if _, dup := known[code]; dup {
			return Chart{}, fmt.Errorf("chart account %s: duplicate code", code)
		}
		known[code] = struct{}{}
		chart.Accounts[i].Code = code
	}

	for role, code := range chart.Roles.codes() {
		if code == "" {
			return Chart{}, fmt.Errorf("chart role %s is not mapped", role)
		}
		if _, ok := known[code]; !ok {
			return Chart{}, fmt.Errorf("chart role %s points to unknown account %s", role, code)
		}
	}
	return chart, nil
}

// IsRoleAccount reports whether code backs a posting role. Such accounts
// are flagged as system accounts and cannot be deactivated.
func (c Chart) IsRoleAccount(code string) bool {
	for _, roleCode := range c.Roles.codes() {
		if roleCode == code {
			return true
		}
	}
	return false
}
