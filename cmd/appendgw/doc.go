// Command appendgw serves the gateway package over HTTP on top of a key-value
// store, Redis by default.
//
// POST /data appends the JSON body, or its "value" property if it is an
// object that has one, to the JSON list kept under the key "datos". GET and
// DELETE on /data/{key} fetch and remove the JSON value under any key.
//
// Configuration is read from the file given with -config, in relaxed JSON.
// The environment variables REDIS_URL, HOST and PORT take precedence over the
// file. With no file and no environment the server listens on port 3000 and
// talks to Redis at localhost:6379.
//
// On SIGINT or SIGTERM the server stops accepting requests and the store is
// closed. The exit status is 1 if closing the store fails, 0 otherwise.
package main // import "github.com/nicolagi/appendgw/cmd/appendgw"
