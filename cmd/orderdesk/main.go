// Package main is the entry point for orderdesk.
//
//	@title						orderdesk
//	@version					1.0
//	@description				Installment order intake webhook and billing ledger.
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@securityDefinitions.apikey	AdminToken
//	@in							header
//	@name						Authorization
//	@description				Bearer token for the admin API (format: "Bearer {token}")
package main

func main() {
	Execute()
}
