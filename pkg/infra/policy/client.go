package policy

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

// Client evaluates Rego policies loaded from files.
type Client struct {
	modules  map[string]string
	compiler *ast.Compiler
}

type Option func(*Client) error

// WithFile loads a .rego file, or all .rego files under a directory recursively.
func WithFile(path string) Option {
	return func(c *Client) error {
		return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return goerr.Wrap(err, "failed to walk policy path", goerr.V("path", p))
			}
			if d.IsDir() || !strings.HasSuffix(p, ".rego") || strings.HasSuffix(p, "_test.rego") {
				return nil
			}

			raw, err := os.ReadFile(filepath.Clean(p))
			if err != nil {
				return goerr.Wrap(err, "failed to read policy file", goerr.V("path", p))
			}
			c.modules[p] = string(raw)
			return nil
		})
	}
}

// WithPolicyData adds a Rego module from memory.
func WithPolicyData(name, data string) Option {
	return func(c *Client) error {
		c.modules[name] = data
		return nil
	}
}

func New(options ...Option) (*Client, error) {
	c := &Client{modules: map[string]string{}}
	for _, opt := range options {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if len(c.modules) == 0 {
		return nil, goerr.Wrap(types.ErrInvalidOption, "no policy module")
	}

	compiler, err := ast.CompileModulesWithOpt(c.modules, ast.CompileOpts{
		EnablePrintStatements: true,
		ParserOptions:         ast.ParserOptions{RegoVersion: ast.RegoV1},
	})
	if err != nil {
		return nil, goerr.Wrap(types.ErrInvalidOption, "failed to compile policy", goerr.V("error", err.Error()))
	}
	c.compiler = compiler

	return c, nil
}

// RegoPrint is called by print() statements in policies.
type RegoPrint func(file string, row int, msg string) error

func (x RegoPrint) Print(ctx print.Context, msg string) error {
	file, row := "", 0
	if ctx.Location != nil {
		file, row = ctx.Location.File, ctx.Location.Row
	}
	return x(file, row, msg)
}

type queryConfig struct {
	print RegoPrint
}

type QueryOption func(*queryConfig)

func WithRegoPrint(p RegoPrint) QueryOption {
	return func(cfg *queryConfig) {
		cfg.print = p
	}
}

// Query evaluates query with input and decodes the first result into output. It returns types.ErrNoPolicyResult if the query is undefined.
func (x *Client) Query(ctx context.Context, query string, input, output any, options ...QueryOption) error {
	var cfg queryConfig
	for _, opt := range options {
		opt(&cfg)
	}

	regoOptions := []func(*rego.Rego){
		rego.Query(query),
		rego.Compiler(x.compiler),
		rego.Input(input),
	}
	if cfg.print != nil {
		regoOptions = append(regoOptions, rego.EnablePrintStatements(true), rego.PrintHook(cfg.print))
	}

	rs, err := rego.New(regoOptions...).Eval(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to evaluate policy", goerr.V("query", query))
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return goerr.Wrap(types.ErrNoPolicyResult, "no policy result", goerr.V("query", query))
	}

	raw, err := json.Marshal(rs[0].Expressions[0].Value)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal policy result", goerr.V("query", query))
	}
	if err := json.Unmarshal(raw, output); err != nil {
		return goerr.Wrap(err, "failed to unmarshal policy result", goerr.V("query", query))
	}

	return nil
}
