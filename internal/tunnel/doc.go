// Package tunnel supervises an external forwarding process (ngrok or
// compatible) that exposes the local webhook listener under a public URL.
// The supervisor keeps at most one child process alive, parses its streamed
// output to detect readiness, and treats every failure as a false return:
// the tunnel is best-effort infrastructure, never required for authorization.
package tunnel
