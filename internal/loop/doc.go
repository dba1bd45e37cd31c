// Package loop drives the bounded tool-invocation loop: send the transcript
// and tool catalog to the model, execute whatever tool invocations the reply
// requests, append the results, and repeat until the model answers in plain
// text or the turn budget runs out.
package loop
