// Package script renders k6 scripts from load test configurations and writes
// them to the script directory.
//
// Rendering is pure: Render turns a loadtest.Config into script text without
// touching the filesystem, and fails with an invalid input error when the
// headers or body cannot be serialized. Generator.Generate renders first and
// only then creates a uniquely named test_<unix-millis>_<random>.js file, so a
// rejected configuration never leaves a file behind.
package script
