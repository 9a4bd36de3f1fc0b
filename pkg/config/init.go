package config

import "os"

const sampleConfigHeader = `# nfcemu configuration.
# Environment variables override file values: NFCEMU_<SECTION>_<KEY>.
`

// InitConfig writes a sample configuration file to the default location.
// It refuses to overwrite an existing file unless force is true.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes a sample configuration file to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return os.ErrExist
		}
	}

	cfg := GetDefaultConfig()
	if err := SaveConfig(cfg, path); err != nil {
		return err
	}

	return nil
}
