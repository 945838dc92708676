package builtin

import "github.com/mwantia/folders/cmd"

// Register adds every builtin command to m.
func Register(m *cmd.Manager) error {
	for _, c := range []cmd.Command{
		&LsCommand{},
		&CatCommand{},
		&WriteCommand{},
		&MkdirCommand{},
		&RmdirCommand{},
		&UnlinkCommand{},
		&CapsCommand{},
	} {
		if err := m.Register(c); err != nil {
			return err
		}
	}
	return nil
}
