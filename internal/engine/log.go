package engine

import "sensorstats/internal/logging"

var logger = logging.New("engine")
