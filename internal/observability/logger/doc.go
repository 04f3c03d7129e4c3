// Package logger expone un logger Zap de proceso con scoping por contexto.
//
// El core administrativo (registry, authz, action tokens, audit, dispatcher)
// loguea siempre a través de este paquete; nunca con el paquete log estándar.
//
// Inicialización (una vez en main):
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
// Por request:
//
//	log := logger.From(ctx).With(logger.Entity("Article"), logger.Action("update"))
//	log.Warn("action token rejected", logger.Reason("replayed"))
//
// En tests se puede instalar un logger silencioso con Replace(zap.NewNop()).
package logger
