package ports

import (
	"github.com/gin-gonic/gin"
)

type HTTPHandler interface {
	InitiateCall(c *gin.Context)
	AnswerCall(c *gin.Context)
	RejectCall(c *gin.Context)
	EndCall(c *gin.Context)
	GetCallStatus(c *gin.Context)
	ListActiveCalls(c *gin.Context)
	GetICEServers(c *gin.Context)
}
