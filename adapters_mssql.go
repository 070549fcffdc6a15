//go:build mssql || all_adapters

package main

import _ "github.com/ekaya-inc/fmpdb/pkg/adapters/datasource/mssql"
