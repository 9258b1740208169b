package main

import (
	"context"

	"github.com/agentdproject/agentd/api/server"

	// built-in agent drivers
	_ "github.com/agentdproject/agentd/api/drivers/inproc"
)

func main() {
	ctx := context.Background()
	srv := server.NewFromEnv(ctx)
	srv.Start(ctx)
}
