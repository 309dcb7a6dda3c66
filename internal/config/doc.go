// Package config defines the packager settings: the package name, the tracked
// components with their version and archive URLs, the release repository and
// the optional S3 mirror.
//
// Defaults describe the umu-scout pipeline. A YAML file may override any of
// them, and UMU_SCOUT_REPO / GITHUB_TOKEN are read from the environment.
package config
