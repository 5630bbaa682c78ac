package pizza

import (
	"encoding/json"
	"fmt"
	"os"
)

type MenuItem struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Menu is the list of items a cart may reference.
type Menu []MenuItem

// DefaultMenu is served when no menu file is configured.
var DefaultMenu = Menu{
	{ID: 1, Name: "Margherita", Price: 10.5},
	{ID: 2, Name: "Pepperoni", Price: 12},
	{ID: 3, Name: "Hawaiian", Price: 11.25},
}

// LoadMenu reads a JSON menu file. An empty path yields DefaultMenu.
func LoadMenu(path string) (Menu, error) {
	if path == "" {
		return DefaultMenu, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("in internal/pizza/menu.go/LoadMenu(): error while `os.ReadFile()` calling: %w", err)
	}

	var menu Menu
	if err := json.Unmarshal(content, &menu); err != nil {
		return nil, fmt.Errorf("in internal/pizza/menu.go/LoadMenu(): error while `json.Unmarshal()` calling: %w", err)
	}
	if len(menu) == 0 {
		return nil, fmt.Errorf("in internal/pizza/menu.go/LoadMenu(): menu file %s has no items", path)
	}

	return menu, nil
}

func (m Menu) find(id int) (MenuItem, bool) {
	for _, item := range m {
		if item.ID == id {
			return item, true
		}
	}
	return MenuItem{}, false
}
