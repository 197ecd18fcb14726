// Package config loads harvester settings.
//
// Sources are applied in order, later ones winning:
//
//  1. built-in defaults (DefaultConfig, including the users, projects and
//     shells jobs)
//  2. a YAML file: --config, else .somharvest.yaml or
//     ~/.config/somharvest/config.yaml
//  3. .env files (.env, ~/.somharvest.env), which only fill variables not
//     already set in the environment
//  4. environment variables: SOMHARVEST_*, plus SOM_COOKIES and COOKIES for
//     the initial cookie seed
//  5. command line flags passed to Load as a map
//
// Example:
//
//	cfg, err := config.Load("", map[string]interface{}{
//	    "output":   "./data",
//	    "parallel": 2,
//	})
//	if err != nil {
//	    return err
//	}
//	jobs, err := cfg.SelectJobs([]string{"users"})
package config
