// Package k6 finds the k6 executable and runs scripts with it.
//
// Locator searches the execution path, then a fixed list of install
// locations for the current platform, then probes `k6 version` directly.
// Runner executes `k6 run <script>` with a timeout and bounded output
// buffers. Failures are classified: IsBinaryNotFound for a missing
// executable, IsExecutionFailed, IsTimeout and IsOutputOverflow for runs
// that started but did not complete cleanly.
package k6
