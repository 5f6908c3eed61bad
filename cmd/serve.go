package cmd

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"corpus/internal/apihandlers"
)

var serveAddr string

// serveCmd runs the HTTP API exposing the document lifecycle operations.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Starts an HTTP server exposing the dataset and document lifecycle:
indexing dispatch, pause/resume, retry, batch status updates and renames.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		router := gin.Default()
		router.Use(apihandlers.AccountMiddleware())

		apiHandler := apihandlers.NewAPIHandler(appInstance)

		v1 := router.Group("/api/v1")
		{
			datasetGroup := v1.Group("/datasets/:dataset_id")
			{
				datasetGroup.PATCH("", apiHandler.UpdateDatasetHandler)
				datasetGroup.POST("/documents/process", apiHandler.ProcessDocumentsHandler)
				datasetGroup.POST("/documents/retry", apiHandler.RetryDocumentsHandler)
				datasetGroup.PATCH("/documents/status/:action", apiHandler.BatchDocumentStatusHandler)
				datasetGroup.PATCH("/documents/:document_id/processing/:action", apiHandler.DocumentProcessingHandler)
				datasetGroup.POST("/documents/:document_id/rename", apiHandler.RenameDocumentHandler)
			}
		}

		router.GET("/health", func(c *gin.Context) {
			if err := appInstance.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		listenAddr := serveAddr
		if listenAddr == "" {
			listenAddr = appInstance.Config.Server.Address
		}
		log.Infof("Starting API server on %s", listenAddr)

		if err := router.Run(listenAddr); err != nil {
			return fmt.Errorf("failed to run API server: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.address from config)")
}
