package jira

import (
	"turnpp/internal/config"
	"turnpp/internal/httpx"
)

type Config = config.Config

var externalHTTPClient = httpx.ExternalHTTPClient()
