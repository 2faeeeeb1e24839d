package cgi

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/yanshuy/cgiserver/internal/headers"
)

// Env is the variable set handed to one CGI invocation.
type Env map[string]string

// Meta carries the request and server facts that become fixed CGI variables.
type Meta struct {
	ServerName     string
	ServerProtocol string
	ServerPort     int
	Method         string
	RemoteHost     string
	RemoteAddr     string
	ScriptName     string
	Query          string
	HasQuery       bool
}

// NewEnv builds the environment for one invocation. Inherited process
// variables come first, request headers override them, and the fixed CGI
// keys override both.
func NewEnv(h headers.Headers, m Meta, inherit bool) Env {
	env := make(Env, len(h)+8)
	if inherit {
		for _, kv := range os.Environ() {
			if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
				env[k] = v
			}
		}
	}

	for key, val := range h {
		env[strings.Map(upperCaseAndUnderscore, key)] = val
	}

	env["SERVER_NAME"] = m.ServerName
	env["SERVER_PROTOCOL"] = m.ServerProtocol
	env["SERVER_PORT"] = strconv.Itoa(m.ServerPort)
	env["REQUEST_METHOD"] = m.Method
	env["REMOTE_HOST"] = m.RemoteHost
	env["REMOTE_ADDR"] = m.RemoteAddr
	env["SCRIPT_NAME"] = m.ScriptName
	if m.HasQuery {
		env["QUERY_STRING"] = m.Query
	}
	return env
}

func (e Env) Clone() Env {
	c := make(Env, len(e))
	for k, v := range e {
		c[k] = v
	}
	return c
}

// Environ renders e as sorted "key=value" pairs. The result is never nil,
// so an exec.Cmd given it does not fall back to the server's environment.
func (e Env) Environ() []string {
	out := make([]string, 0, len(e))
	for k, v := range e {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

func upperCaseAndUnderscore(r rune) rune {
	switch {
	case r >= 'a' && r <= 'z':
		return r - ('a' - 'A')
	case r == '-':
		return '_'
	case r == '=':
		return '_'
	}
	return r
}
