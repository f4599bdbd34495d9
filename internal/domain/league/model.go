package league

import "fmt"

// League identifies one virtual league shown on the provider page.
// Instances are built once at startup from static configuration and
// never mutated afterwards.
type League struct {
	Code           string
	Name           string
	SelectionIndex int
}

func (l League) Validate() error {
	if l.Code == "" {
		return fmt.Errorf("league code is required")
	}
	if l.Name == "" {
		return fmt.Errorf("league name is required")
	}
	if l.SelectionIndex < 0 {
		return fmt.Errorf("league selection index must not be negative")
	}

	return nil
}
