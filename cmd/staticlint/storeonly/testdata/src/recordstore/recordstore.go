package recordstore

import "os"

func replace(tmp, name string) error {
	if err := os.Rename(tmp, name); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
