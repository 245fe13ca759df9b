package main

import (
	"github.com/spf13/pflag"
)

// bindFlag ties a flag to a config key. Lookup only fails on a programming
// error, so a failure panics at init.
func bindFlag(key string, flag *pflag.Flag) {
	if flag == nil {
		panic("binding unknown flag for " + key)
	}
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}
