package handlers

import (
  "github.com/gin-gonic/gin"
)

// respondError writes the flat error envelope the transcription API uses:
// { "success": false, "error": "..." }.
func respondError(c *gin.Context, status int, msg string) {
  c.JSON(status, gin.H{
    "success": false,
    "error":   msg,
  })
}
