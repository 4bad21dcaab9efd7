package config

const schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "manifestFile": {"type": "string", "minLength": 1},
    "markerFile": {"type": "string", "minLength": 1},
    "notesFile": {"type": "string", "minLength": 1},
    "remote": {"type": "string", "minLength": 1},
    "remoteTimeout": {"type": "string", "minLength": 1},
    "branches": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "develop": {"type": "string", "minLength": 1},
        "release": {"type": "string", "minLength": 1}
      }
    },
    "branchScope": {"type": "string", "enum": ["auto", "version", "track"]},
    "parallelism": {"type": "integer", "minimum": 1},
    "strictVersion": {"type": "boolean"},
    "kindPolicy": {"type": "string", "enum": ["branch", "reject"]},
    "failOnError": {"type": "boolean"},
    "github": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "baseURL": {"type": "string"},
        "tokenEnv": {"type": "string", "minLength": 1}
      }
    },
    "templates": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "commitMessage": {"type": "string"},
        "prTitle": {"type": "string"},
        "prBody": {"type": "string"},
        "releaseNote": {"type": "string"},
        "stashMessage": {"type": "string"}
      }
    },
    "metrics": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "pushGateway": {"type": "string"},
        "job": {"type": "string", "minLength": 1}
      }
    }
  }
}`
