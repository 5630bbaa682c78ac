package handler

import (
	"os"
	fs "os"
)

func save(name string, data []byte) error {
	if err := os.WriteFile(name, data, 0o600); err != nil { // want "os.WriteFile outside the record store"
		return err
	}
	_, err := os.ReadFile(name)
	return err
}

func drop(name string) error {
	remove := fs.Remove
	if err := remove(name); err != nil {
		return err
	}
	return fs.Rename(name, name+".old") // want "os.Rename outside the record store"
}
