// Package schema define la forma declarada/introspectada de una entidad
// administrable: Descriptor (modelo), Field (campo) y Declaration (entrada
// externa que consume el introspector).
//
// Un *Descriptor publicado por el registry es inmutable: cualquier cambio se
// hace sobre Clone() y se publica como descriptor nuevo.
package schema
