package ingest

import "sensorstats/internal/logging"

var logger = logging.New("ingest")
