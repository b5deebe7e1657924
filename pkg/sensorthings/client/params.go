package client

import (
	"fmt"
	"net/url"
	"strings"
)

func Filter(filter string) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, "$filter="+url.QueryEscape(filter))
	}
}

func Select(fields ...string) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, "$select="+url.QueryEscape(strings.Join(fields, ",")))
	}
}

func Expand(expansions ...string) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, "$expand="+url.QueryEscape(strings.Join(expansions, ",")))
	}
}

func Top(limit int) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, fmt.Sprintf("$top=%d", limit))
	}
}

func Skip(offset int) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, fmt.Sprintf("$skip=%d", offset))
	}
}

func OrderBy(expression string) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, "$orderby="+url.QueryEscape(expression))
	}
}
