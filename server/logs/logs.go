/******************************************************************************
 *
 *  Description :
 *    Package logs exposes info, warning and error loggers.
 *
 *****************************************************************************/
package logs

import (
	"log"
	"os"
)

var (
	Info = log.New(os.Stdout, "I", log.LstdFlags|log.Lshortfile)
	Warn = log.New(os.Stdout, "W", log.LstdFlags|log.Lshortfile)
	Err  = log.New(os.Stdout, "E", log.LstdFlags|log.Lshortfile)
)
