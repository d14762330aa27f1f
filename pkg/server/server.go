// Package server assembles the MCP server: repositories, services, and tool
// handlers wired onto the stdio or HTTP transport.
package server

import (
	"context"

	mcpgo "github.com/felixgeelhaar/mcp-go"
	"github.com/rs/zerolog"

	"github.com/quarryhq/quarry/pkg/handlers"
	"github.com/quarryhq/quarry/pkg/infrastructure/metrics"
	"github.com/quarryhq/quarry/pkg/pool"
	"github.com/quarryhq/quarry/pkg/repositories/mysql"
	"github.com/quarryhq/quarry/pkg/services"
)

// serverInstructions is handed to MCP clients on initialize.
const serverInstructions = `quarry provides read-only access to a MySQL database.
Discover structure with list_schemas, list_table_names, and get_table_info.
Run SELECT statements with execute_query; anything that could write is rejected.
Stored procedures are limited to those declared READS SQL DATA: enumerate them
with list_stored_procedures, inspect them with get_stored_procedure_definition
and get_stored_procedure_parameters, and call them with execute_stored_procedure.`

// Server is the assembled MCP server.
type Server struct {
	srv    *mcpgo.Server
	logger zerolog.Logger

	schemaHandler    handlers.SchemaHandler
	queryHandler     handlers.QueryHandler
	procedureHandler handlers.ProcedureHandler
}

// New assembles the MCP server on top of an already created connection pool.
// The caller keeps ownership of the pool and shuts it down after the
// transport stops.
func New(p *pool.Pool, logger zerolog.Logger, collector metrics.Collector, version string) *Server {
	logAdapter := &loggerAdapter{logger: logger}
	serviceMetrics := &serviceMetricsAdapter{collector: collector}
	handlerMetrics := &handlerMetricsAdapter{collector: collector}
	provider := poolProvider{pool: p}

	schemaRepo := mysql.NewSchemaRepository(logger)
	procedureRepo := mysql.NewProcedureRepository(logger)
	queryRepo := mysql.NewQueryRepository(logger)

	schemaService := services.NewSchemaService(schemaRepo, provider, logAdapter, serviceMetrics)
	queryService := services.NewQueryService(queryRepo, provider, logAdapter, serviceMetrics)
	procedureService := services.NewProcedureService(procedureRepo, schemaRepo, provider, logAdapter, serviceMetrics)

	s := &Server{
		logger:           logger.With().Str("component", "mcp_server").Logger(),
		schemaHandler:    handlers.NewSchemaHandler(schemaService, logAdapter, handlerMetrics),
		queryHandler:     handlers.NewQueryHandler(queryService, logAdapter, handlerMetrics),
		procedureHandler: handlers.NewProcedureHandler(procedureService, logAdapter, handlerMetrics),
	}

	info := mcpgo.ServerInfo{
		Name:        "quarry",
		Version:     version,
		Description: "Read-only MySQL access for tool-calling agents",
		Capabilities: mcpgo.Capabilities{
			Tools: true,
		},
	}

	s.srv = mcpgo.NewServer(info, mcpgo.WithInstructions(serverInstructions))
	s.srv.Use(asServerMiddleware(mcpgo.Recover()), asServerMiddleware(mcpgo.RequestID()))
	s.registerTools()

	return s
}

// registerTools registers the eight database tools.
func (s *Server) registerTools() {
	s.srv.Tool("list_schemas").
		Description("List all available schemas in the database").
		Handler(s.schemaHandler.ListSchemas)

	s.srv.Tool("list_table_names").
		Description("List table names from the specified schema").
		Handler(s.schemaHandler.ListTableNames)

	s.srv.Tool("get_table_info").
		Description("Get detailed table schemas and sample rows").
		Handler(s.schemaHandler.GetTableInfo)

	s.srv.Tool("execute_query").
		Description("Execute a SQL SELECT query and return the results as a list of dictionaries. " +
			"Only SELECT statements are accepted; anything else is rejected.").
		Handler(s.queryHandler.ExecuteQuery)

	s.srv.Tool("list_stored_procedures").
		Description("List all stored procedures in the database").
		Handler(s.procedureHandler.ListStoredProcedures)

	s.srv.Tool("get_stored_procedure_definition").
		Description("Get the definition of a stored procedure").
		Handler(s.procedureHandler.GetStoredProcedureDefinition)

	s.srv.Tool("get_stored_procedure_parameters").
		Description("Get the parameters of a stored procedure").
		Handler(s.procedureHandler.GetStoredProcedureParameters)

	s.srv.Tool("execute_stored_procedure").
		Description("Execute a stored procedure in the database. Call this tool with the appropriate "+
			"stored procedure name and parameters based on what procedures are available "+
			"(use list_stored_procedures first if unsure).").
		Handler(s.procedureHandler.ExecuteStoredProcedure)
}

// ServeStdio runs the server over stdin/stdout until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	s.logger.Info().Str("transport", "stdio").Msg("Serving MCP")
	return mcpgo.ServeStdio(ctx, s.srv)
}

// ServeHTTP runs the server over HTTP until ctx is cancelled.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	s.logger.Info().Str("transport", "http").Str("address", addr).Msg("Serving MCP")
	return mcpgo.ServeHTTP(ctx, s.srv, addr)
}
